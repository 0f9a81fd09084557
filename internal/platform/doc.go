// Package platform wraps the few file mode operations whose behavior differs
// between Unix and Windows.
package platform
