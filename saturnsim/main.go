// Command saturnsim runs the machine timing model from the command line.
package main

import (
	"github.com/tebeka/atexit"

	"github.com/lockstep-sim/saturn/saturnsim/cmd"
)

func main() {
	atexit.Exit(cmd.Execute())
}
