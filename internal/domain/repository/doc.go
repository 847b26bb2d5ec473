// Package repository define los contratos de persistencia de la portería:
// challenges OTP, visitas, solicitudes de override, auditoría y los
// residentes/wardens que los engines consultan.
//
// Las implementaciones viven en internal/store/adapters/ (pg, memory).
//
//	┌──────────────────────────────────────────────┐
//	│        services/visitor (engines)            │
//	└──────────────────────────────────────────────┘
//	                     │
//	                     ▼
//	┌──────────────────────────────────────────────┐
//	│   domain/repository (interfaces + tipos)     │
//	└──────────────────────────────────────────────┘
//	                     │
//	          ┌──────────┴──────────┐
//	          ▼                     ▼
//	   adapters/pg           adapters/memory
//
// Convenciones:
//   - Context siempre es el primer parámetro.
//   - Las transiciones de estado son updates condicionales (CAS); el
//     perdedor de una carrera recibe ErrAlreadyUsed / ErrNotPending / ErrAlreadyClosed.
package repository
