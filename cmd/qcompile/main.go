// Command qcompile is a CLI front end over the query compiler core: it
// parses a SQL statement, compiles it against a small JSON-described
// catalog, and prints either the resulting task plan or its EXPLAIN.
package main

import "os"

func main() {
	os.Exit(New().Execute())
}
