// Command truthc is the compile/decompile front end for the Touhou binary
// script formats the core supports.
//
// Grounded on Consensys-go-corset/cmd/testgen/main.go's pattern of a
// self-contained cobra root living directly in package main.
package main

func main() {
	Execute()
}
