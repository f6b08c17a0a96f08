package main

import (
	"github.com/samuelfneumann/gotd/examples"
)

func main() {
	examples.SimpleTDRandomWalk()
}
