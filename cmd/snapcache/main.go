// snapcache runs the cached vision and listing calls from the command line
// and manages the local cache.
package main

var version = "dev"

func main() {
	Execute()
}
