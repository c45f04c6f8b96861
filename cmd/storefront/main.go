package main

import "storefront-engine/internal/cmd"

func main() {
	cmd.Execute()
}
