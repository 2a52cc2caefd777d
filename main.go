package main

import "github.com/modcoretech/NG-Download-Manager/cmd"

func main() {
	cmd.Execute()
}
