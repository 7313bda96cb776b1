package main

import "github.com/Max-Kushnir/playlister/cmd"

func main() {
	cmd.Execute()
}
