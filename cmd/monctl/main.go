package main

import "github.com/koa-ops/monctl/cmd/cmd_mon"

func main() {
	cmd_mon.Execute()
}
