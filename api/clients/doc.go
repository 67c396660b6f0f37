/*
Package clients provides the HTTP client of the username registry server API.

RegistryClient implements api.RegistryProvider. Non-2xx responses are returned
as *StatusError carrying the status code and the server's error message:

	client := clients.NewRegistryClient("http://localhost:8080")

	roots, err := client.Roots(ctx)
	if err != nil {
	    return err
	}

	tx, err := client.Register(ctx, api.RegisterRequest{Root: roots[0].Root.Hex()})
	var statusErr *clients.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusServiceUnavailable {
	    // the server has no signing key
	}

MockRegistryProvider is a testify mock of the same interface.
*/
package clients
