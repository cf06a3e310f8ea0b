// Package main is ohrun, a command line front-end of the runtime API.
//
// It sends one command to a running server and prints the output in the
// shape language models expect:
//
//	Command ran and generated the following output:
//	```
//	...
//	```
//
// Usage:
//
//	ohrun "ls -la"
//	ohrun --blocking --timeout 900 "make test"
//	ohrun --context
//	ohrun --job 3
//	ohrun --emit-curl "echo hi"
//
// The server is taken from --url/--api-key, OH_API_URL/OH_API_KEY, a
// session file, or http://localhost:8000.
//
// Exit codes: 0 on success, 1 when the server answered with an error,
// 2 on usage or transport errors.
package main
