package main

import "albumapi/cmd"

func main() {
	cmd.Execute()
}
