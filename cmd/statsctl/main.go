// Command statsctl runs pieces of the dashboard from the command line.
package main

import (
	_ "time/tzdata"
)

func main() {
	Execute()
}
