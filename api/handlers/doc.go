/*
Package handlers implements the request processing of the username registry server.

Handler serves two surfaces over the same registry contract and claim sets:

  - the JSON API under /api, see package api for the endpoint list
  - the HTML dashboard at / with its form posts under /ui

The dashboard mirrors what a connected account sees: the accepted roots with
the account's claim under each, a register button where the account may
register, the deregister control, the username check and the side panels for
registering with a pasted claim and opening a new registration period.

The connected account is the account of the server's signing key, unless the
account query parameter selects another one to inspect. Form posts always
transact with the server's key and redirect back to the dashboard with the
transaction hash or the error.

# Error Handling

Errors map to status codes consistently across both surfaces:

  - 400 for malformed roots, usernames, accounts and claim pastes
  - 404 when no claim set is published for a root or the account has no claim
  - 502 when the contract or a claim backend fails
  - 503 for state-changing requests on a server without a signing key
*/
package handlers
