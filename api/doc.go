// Package api defines the HTTP API of the username registry server: request and
// response types shared by the handlers and the HTTP client, and the server
// configuration.
//
// Endpoints:
//
//	GET  /api/roots                        accepted roots
//	GET  /api/account                      dashboard view of the server's account
//	GET  /api/accounts/{address}           dashboard view of an account
//	GET  /api/usernames/{username}/owner   username ownership
//	GET  /api/claims/{root}                verified claim set of a root
//	POST /api/admin/roots                  open a registration period
//	POST /api/register                     register the server's account
//	POST /api/deregister                   release the server's username
//
// State-changing endpoints sign with the server's key and return the
// transaction hash. Servers started without a key answer them with 503.
// They require a JSON Content-Type and reject requests from other origins
// with 403.
package api
