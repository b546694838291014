// Package pinhash hashes and verifies second-factor PINs with Argon2id.
//
// Hashes are PHC strings ($argon2id$v=19$m=...,t=...,p=...$salt$hash) so the
// cost parameters travel with the hash and can be raised without breaking
// existing configurations.
package pinhash
