// Package repository define las interfaces de repositorio de dominio.
//
// Estas interfaces representan contratos de negocio, independientes del
// almacenamiento subyacente. Las implementaciones viven en internal/store/{pg,sqlite,memory}.
//
//	┌──────────────────────────────────────────────────────┐
//	│            Services / Controllers                    │
//	└──────────────────────────────────────────────────────┘
//	                        │
//	                        ▼
//	┌──────────────────────────────────────────────────────┐
//	│        domain/repository (interfaces)                │
//	│  UserRepository, TwoFactorRepository,                │
//	│  PasskeyRepository, PasswordResetRepository          │
//	└──────────────────────────────────────────────────────┘
//	                        │
//	         ┌──────────────┼──────────────┐
//	         ▼              ▼              ▼
//	   store/pg       store/sqlite     store/memory
//
// Convenciones:
//   - Context siempre es el primer parámetro
//   - Las mutaciones que requieren atomicidad (consumo de recovery codes,
//     sign_count de passkeys) son compare-and-swap y devuelven ErrStale
//   - Operaciones sobre recursos de otro usuario devuelven ErrNotFound
//   - Errores de dominio están en errors.go
package repository
