// Package entities contains the GORM models of the quotation portal tables
// that take part in edit locking, plus the users table used to resolve lock
// holders.
package entities
