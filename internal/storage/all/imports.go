// Package all wires every built-in storage backend into the storage factory.
//
// Importing it (as a blank import) runs each backend's init, which registers
// its factory with the storage package:
//
//   - "postgres" (tabload/internal/storage/postgres)
//   - "mssql"    (tabload/internal/storage/mssql)
//   - "mysql"    (tabload/internal/storage/mysql)
//   - "sqlite"   (tabload/internal/storage/sqlite)
//   - "sqlfile"  (tabload/internal/storage/sqlfile)
package all

import (
	_ "tabload/internal/storage/mssql"
	_ "tabload/internal/storage/mysql"
	_ "tabload/internal/storage/postgres"
	_ "tabload/internal/storage/sqlfile"
	_ "tabload/internal/storage/sqlite"
)
