package main

import "govrag/cmd"

func main() {
	cmd.Execute()
}
