package main

import "github.com/evkv/evkv/cmd"

func main() {
	cmd.Execute()
}
