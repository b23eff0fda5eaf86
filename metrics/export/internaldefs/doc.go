// Package internaldefs holds the shared metric name table consumed by the
// exporter bridges. Both exporters must agree on names and bucket layout;
// keeping the table in one place is what enforces that.
package internaldefs
