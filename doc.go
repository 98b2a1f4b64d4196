// Package manageql exposes management objects as relational tables.
//
// Every management object (a named set of typed attributes, addressed by an
// object name such as "go.runtime:type=Memory") becomes a row of a table:
// the table named after the object, or a table materialized for an object
// name pattern such as "go.runtime:*". Attribute values are coerced to
// relational types; composite and tabular values are exposed as JSON.
//
// Tables can be read in three ways:
//   - over Arrow Flight, by the DuckDB Airport extension or any Flight client
//     (NewServer, Start)
//   - through the embedded DuckDB host in package engine, which rewrites
//     pattern references in SQL text before execution
//   - directly, through source.Source and package fetch
//
// # Quick Start
//
// Serve the runtime objects of the current process:
//
//	conn := mgmt.NewServer()
//	if err := mgmt.RegisterRuntime(conn); err != nil {
//	    log.Fatal(err)
//	}
//	srv, err := manageql.Start(ctx, manageql.ServerConfig{
//	    Connection: conn,
//	    Address:    "localhost:50051",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Stop()
//
// Then, from DuckDB:
//
//	INSTALL airport FROM community;
//	LOAD airport;
//	ATTACH 'mgmt' (TYPE AIRPORT, LOCATION 'grpc://localhost:50051');
//	SELECT "HeapObjects" FROM mgmt.jmx."go.runtime:type=Memory";
//
// # Materialization
//
// A table for a pattern is created on first reference, or explicitly with
// the get_dynamic_table_ddl table function:
//
//	SELECT ddl FROM get_dynamic_table_ddl('go.runtime:*', 'runtime_all');
//
// The table holds the union of the attributes of every matching object at
// that moment. Objects or attributes that appear later are not added until
// the table is materialized again.
//
// # Server Lifecycle
//
// NewServer registers Flight service handlers on a user-provided
// grpc.Server and leaves start, listen and stop to the caller. Start and
// Stop manage a single server per process instead.
//
// # Authentication
//
// Set ServerConfig.Auth to require a bearer token on every Flight call:
//
//	config.Auth = auth.StaticToken(os.Getenv("MANAGEQL_TOKEN"), "duckdb")
//
// Clients send "authorization: Bearer <token>" metadata. In DuckDB this is
// the auth_token option of the Airport ATTACH. Calls without a valid token
// fail with codes.Unauthenticated.
//
// # Logging
//
// The package logs through the *slog.Logger in ServerConfig, or
// slog.Default() when none is given. Skipped objects and failed rewrites
// are logged at Warn; per-request details at Debug.
//
// # Memory Management
//
// Arrow uses manual reference counting. Callers MUST call Release() on
// RecordReaders returned by Table.Scan and on records they retain.
package manageql
