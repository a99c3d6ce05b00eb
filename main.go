package main

import "datematch-backend/cmd"

func main() {
	cmd.Run()
}
