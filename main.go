package main

import "ipcam/cmd"

func main() {
	cmd.Execute()
}
