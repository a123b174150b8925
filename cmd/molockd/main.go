// Command molockd runs Molock, a configuration-driven HTTP mock server.
package main

func main() {
	Execute()
}
