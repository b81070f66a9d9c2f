package tools_test

import (
	"log"
	"os"
)

// Using default softHSM configuration. Change it if necessary.
const p11Lib = "/usr/lib/softhsm/libsofthsm2.so" // Path used by Ubuntu Bionic Beaver
const p11Key = "1234"
const p11Label = "ecc-bench-test"

const helloWorld = "Hello World"

var Log = log.New(os.Stderr, "", 0)
