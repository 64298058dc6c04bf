package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

func main() {
	if err := newApp(os.Stdin, os.Stdout, os.Stderr).execute(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("[error] ")+err.Error())
		os.Exit(1)
	}
}
