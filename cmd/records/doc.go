// Package records implements the commands that read and maintain the stored
// component records directly, without a running world:
//
//   - inspect: list records with a decoded preview, optionally filtered by an expression
//   - stats: engine information and record counts per component tag
//   - purge: delete every record of a component tag
package records
