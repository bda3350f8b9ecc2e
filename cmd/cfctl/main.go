package main

import "github.com/AkihikoHONDA/crazyflie-go/cmd/cfctl/cmd"

func main() {
	cmd.Execute()
}
