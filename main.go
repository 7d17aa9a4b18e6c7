package main

import (
	"os"

	"github.com/bugVanisher/rtmpsink/cmd"
	"github.com/bugVanisher/rtmpsink/utils"
)

func main() {
	defer utils.PanicRecover()
	exitCode := cmd.Execute()
	os.Exit(exitCode)
}
