package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"

	ethlog "github.com/ethereum/go-ethereum/log"
	"github.com/fjl/tcpxfer/fileserver"
)

const usage = "Usage: xfer-server [flags] <STATIC_DIR> [HOST] [PORT]"

func main() {
	var (
		chunkFlag     = flag.Int("chunk", fileserver.DefaultChunkSize, "transfer chunk size in bytes")
		maxConnsFlag  = flag.Int("maxconns", 0, "maximum concurrent connections (0 = unlimited)")
		timeoutFlag   = flag.Duration("timeout", 0, "idle timeout for socket reads and writes (0 = none)")
		verbosityFlag = flag.Int("verbosity", int(ethlog.LvlInfo), "log level (0-5)")
	)
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	h := ethlog.LvlFilterHandler(ethlog.Lvl(*verbosityFlag), ethlog.StreamHandler(os.Stderr, ethlog.TerminalFormat(true)))
	ethlog.Root().SetHandler(h)

	args := flag.Args()
	if len(args) < 1 || len(args) > 3 {
		log.Fatal(usage)
	}
	host, port := "localhost", "3333"
	if len(args) > 1 {
		host = args[1]
	}
	if len(args) > 2 {
		port = args[2]
	}
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		log.Fatalf("Invalid port %s", port)
	}

	root, err := fileserver.NewRoot(args[0])
	if err != nil {
		log.Fatalf("can't serve directory: %v", err)
	}
	config := fileserver.Config{
		ChunkSize:    *chunkFlag,
		MaxConns:     *maxConnsFlag,
		ReadTimeout:  *timeoutFlag,
		WriteTimeout: *timeoutFlag,
	}
	srv := fileserver.NewServer(root, config)
	if err := srv.ListenAndServe(net.JoinHostPort(host, port)); err != nil {
		log.Fatal(err)
	}
}
