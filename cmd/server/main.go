// interp-server: holds a model and answers forward/backward requests for
// remote interpreters
package main

import (
	"flag"
	"fmt"
	"net"
	"os"

	"interp_lib/core/ckkswrapper"
	"interp_lib/nn"
	"interp_lib/split"
	"interp_lib/utils"
)

var (
	logN      = flag.Int("logN", ckkswrapper.DefaultLogN, "Ring dimension log2 for encrypted layers")
	modelPath = flag.String("model", "model.json", "Model weights file")
	listen    = flag.String("listen", "", "TCP address to listen on; stdin/stdout when empty")
	verbose   = flag.Bool("verbose", false, "Verbose output")
)

func main() {
	flag.Parse()
	utils.Verbose = *verbose

	log("Server starting (model=%s, logN=%d)", *modelPath, *logN)

	weights, err := utils.LoadWeights(*modelPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	var heCtx *ckkswrapper.HeContext
	for _, l := range weights.Layers {
		if l.Encrypted {
			if heCtx, err = ckkswrapper.NewHeContextWithLogN(*logN); err != nil {
				fmt.Fprintf(os.Stderr, "HE context: %v\n", err)
				os.Exit(1)
			}
			log("HE context ready (%d slots)", heCtx.Slots())
			break
		}
	}

	model, err := utils.BuildModel(weights, heCtx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	log("Model ready: %s", model.Tag())

	if *listen == "" {
		log("Waiting for client on stdin...")
		if err := split.Serve(split.NewProtocol(os.Stdin, os.Stdout), model); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		log("Server done")
		return
	}

	ln, err := net.Listen("tcp", *listen)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	log("Listening on %s", ln.Addr())
	for {
		conn, err := ln.Accept()
		if err != nil {
			log("Accept: %v", err)
			continue
		}
		go handle(conn, model)
	}
}

func handle(conn net.Conn, model *nn.Sequential) {
	defer conn.Close()
	log("Client %s connected", conn.RemoteAddr())
	if err := split.Serve(split.NewProtocol(conn, conn), model); err != nil {
		log("Client %s: %v", conn.RemoteAddr(), err)
		return
	}
	log("Client %s done", conn.RemoteAddr())
}

func log(format string, args ...interface{}) {
	if *verbose {
		fmt.Fprintf(os.Stderr, "[SERVER] "+format+"\n", args...)
	}
}
