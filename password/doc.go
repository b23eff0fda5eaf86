// Package password is the credential-hashing collaborator consumed by the
// engine. The engine itself never compares cleartext; it calls Verify and
// acts on the boolean.
package password
