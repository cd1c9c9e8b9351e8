package main

import "github.com/example/room-booking/cmd/bookingctl/cmd"

func main() {
	cmd.Execute()
}
