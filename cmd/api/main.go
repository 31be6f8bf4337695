package main

import (
	"log"

	"github.com/spf13/cobra"
)

func main() {
	log.SetFlags(0)
	opts := &options{}
	cobra.CheckErr(newCmd(opts).Execute())
}
