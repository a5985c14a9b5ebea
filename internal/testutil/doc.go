// Package testutil contains helper builders and stub agents used across tests
// to reduce boilerplate when constructing contexts and scripting worker
// behavior. They are not intended for production usage.
package testutil
