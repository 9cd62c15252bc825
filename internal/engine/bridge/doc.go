// Package bridge connects to a reasoning/query engine running as a
// long-lived child process.
//
// The client and the engine exchange newline-delimited JSON messages over
// the child's stdin and stdout. Each request carries an id, a method and
// params; each response echoes the id and carries either a result or an
// error:
//
//	-> {"id":1,"method":"hello","params":{"client":"hubmapy","protocol":1}}
//	<- {"id":1,"result":{"engine":"robot-bridge","version":"1.9.5","protocol":1}}
//	-> {"id":2,"method":"load","params":{"source":"/data/ccf.owl"}}
//	<- {"id":2,"result":{"iri":"http://purl.org/ccf/latest/ccf.owl","version":"1.5.0","axioms":51234}}
//	-> {"id":3,"method":"query","params":{"query":"SELECT ...","destination":"/out/q.csv","format":"csv"}}
//	<- {"id":3,"error":{"code":"QUERY","message":"Lexical error at line 3, column 7"}}
//
// Methods: hello (handshake, sent once by Start), load, reason, query and
// shutdown. The engine's stderr is forwarded to the logger at debug level
// and its tail is attached to connection errors.
package bridge
