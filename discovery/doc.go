// Package discovery resolves the registry contract address from DNS.
//
// Operators publish the deployed address as a TXT record so that clients only
// need to know a domain:
//
//	registry.example.org. 300 IN TXT "username-registry=0x5FbDB2315678afecb367f032d93F642f64180aa3"
package discovery
