// Command registry-cli inspects and uses the username registry from a terminal.
//
// Commands talk to the contract directly through --rpc-addr. Writes are signed
// with --privkey-file and claim sets are read from and published to every
// --claims backend.
//
//	registry-cli --contract 0x5FbD... roots
//	registry-cli --contract 0x5FbD... --claims file://./claims --privkey-file key.hex whoami
//	registry-cli --contract 0x5FbD... check alice
//	registry-cli --contract 0x5FbD... --privkey-file key.hex register 0x<root>
//	printf 'alice\t["0x..."]' | registry-cli --contract 0x5FbD... --privkey-file key.hex register-claim 0x<root>
//
// Opening a period is a two step process for the admin:
//
//	registry-cli period build --input entries.json --out ./claims
//	registry-cli --contract 0x5FbD... --privkey-file admin.hex --claims s3://bucket/claims period publish ./claims/0x12345678.json
//
// The remote subcommands go through a running registry-server instead and act
// as the server's account.
package main
