package main

import "github.com/frahmantamala/hse-inspection/cmd"

func main() {
	cmd.Execute()
}
