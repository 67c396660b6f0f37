// Command registry-server serves the username registry dashboard and JSON API.
//
// It binds the registry contract at --contract (or the address published in
// the TXT record of --contract-dns) and reads claim sets from every --claims
// backend. With --privkey-file the server can open periods and register its
// own account; without it every write endpoint answers 503.
//
// Example:
//
//	registry-server \
//	  --rpc-addr http://127.0.0.1:8545 \
//	  --contract 0x5FbDB2315678afecb367f032d93F642f64180aa3 \
//	  --privkey-file ./key.hex \
//	  --claims file:///var/lib/registry/claims \
//	  --claims github://example/registry-claims/periods
//
// --dev skips the chain: the server keeps an in-memory registry administered
// by the server key and opens one demo period on startup.
package main
