// Package core provides the business logic of the M2O configurator.
//
// The package ties the domain packages together and owns the mutable
// state: user sessions. It is independent of HTTP and can be driven by
// web handlers, tests or a CLI without modification.
//
// # Architecture
//
// Startup reads every source once through [Load]:
//
//   - The catalog (xlsx, csv or a PostgreSQL table) parsed by package catalog.
//   - The wholesale and retail price matrices of each market segment.
//   - The masterdata template whose header row fixes the export columns.
//
// [NewService] then filters the catalog per market segment and builds one
// catalog index per segment. These views are immutable and shared by every
// session.
//
// # Sessions
//
// A [Session] carries a currency and a selection set. Choosing a currency
// picks the segment view and starts a fresh selection:
//
//	sess, _ := svc.NewSession()
//	_ = sess.SelectCurrency("DKK")
//	_ = sess.Toggle(key, true)
//	_ = sess.SetChosenBases(key, []string{"Oak"})
//	table, _ := sess.GenerateExport(ctx)
//
// Idle sessions expire after the configured TTL and are removed by
// [Service.StartSessionSweeper].
//
// # Exports
//
// Export assembly is bounded by an [ExportLimiter]. A request that cannot
// get a slot in time fails with [ErrTooManyExports].
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a code for support reference:
//
//   - CAT001-CAT006: Catalog, price matrix and template loading
//   - CUR001-CUR002: Currency selection
//   - SEL001-SEL006: Selection intents
//   - EXP001-EXP002: Export generation
//   - SES001-SES002: Sessions
//   - REQ001-REQ003, RATE001: Request lifecycle and rate limiting
package core
