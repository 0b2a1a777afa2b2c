package main

import "github.com/julienstroheker/wsrelay/gateway/cmd"

func main() {
	cmd.Execute()
}
