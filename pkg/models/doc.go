// Package models defines the bank's entities and their fixed-size on-disk
// layouts.
//
// Each entity has a Codec used by the record store. Strings are stored
// zero padded to a fixed width, integers little-endian, amounts as Money
// (int64 paise) and timestamps as Unix nanoseconds.
package models
