package main

import "github.com/kcaldas/tradechat/cmd/cli"

func main() {
	cli.Execute()
}
