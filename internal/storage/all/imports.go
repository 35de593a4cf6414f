// Package all wires the built-in storage backends into the storage
// factory.
//
// This package exists purely for side effects: importing it (typically as a
// blank import in the wiring layer) runs the init functions of each
// concrete backend, which register their factories with the storage
// package. After that, the following storage kinds are available:
//
//   - "postgres" (internal/storage/postgres)
//   - "sqlite"   (internal/storage/sqlite)
package all

import (
	_ "github.com/AliAbdElhafeez/Sparkify-Data-Modeling/internal/storage/postgres"
	_ "github.com/AliAbdElhafeez/Sparkify-Data-Modeling/internal/storage/sqlite"
)
