/*
Copyright (c) 2019-2021 Andreas T Jonsson

This software is provided 'as-is', without any express or implied
warranty. In no event will the authors be held liable for any damages
arising from the use of this software.

Permission is granted to anyone to use this software for any purpose,
including commercial applications, and to alter it and redistribute it
freely, subject to the following restrictions:

1. The origin of this software must not be misrepresented; you must not
   claim that you wrote the original software. If you use this software
   in a product, an acknowledgment in the product documentation would be
   appreciated but is not required.
2. Altered source versions must be plainly marked as such, and must not be
   misrepresented as being the original software.
3. This notice may not be removed or altered from any source distribution.
*/

package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/andreas-jonsson/virtualmac/emulator"
	"github.com/andreas-jonsson/virtualmac/version"
)

var (
	genHd     string
	genHdSize = 100
)

var ver bool

func init() {
	flag.BoolVar(&ver, "v", false, "Print version information")

	flag.StringVar(&genHd, "gen-hd", "", "Create a blank harddrive image")
	flag.IntVar(&genHdSize, "gen-hd-size", genHdSize, "Set size of the generated harddrive image in megabytes")
}

func main() {
	flag.Parse()

	if ver {
		fmt.Printf("%s (%s)\n", version.Current.FullString(), version.Hash)
		return
	}

	if genImage() {
		return
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		emulator.Shutdown()
	}()

	printLogo()
	emulator.Run()
}

func genImage() bool {
	if genHd == "" {
		return false
	}

	if genHdSize < 10 {
		genHdSize = 10
	} else if genHdSize > 2000 {
		genHdSize = 2000
	}

	hd, err := os.Create(genHd)
	if err == nil {
		defer hd.Close()
		var buffer [0x100000]byte
		for i := 0; i < genHdSize; i++ {
			if _, err = hd.Write(buffer[:]); err != nil {
				break
			}
		}
	}
	if err != nil {
		fmt.Print(err)
	}
	return true
}

func printLogo() {
	fmt.Print(logo)
	fmt.Println("v" + version.Current.String())
	fmt.Println(" ───────═════ " + version.Copyright + " ══════───────\n")
}

var logo = `
██╗   ██╗██╗██████╗ ████████╗██╗   ██╗ █████╗ ██╗     ███╗   ███╗ █████╗  ██████╗
██║   ██║██║██╔══██╗╚══██╔══╝██║   ██║██╔══██╗██║     ████╗ ████║██╔══██╗██╔════╝
██║   ██║██║██████╔╝   ██║   ██║   ██║███████║██║     ██╔████╔██║███████║██║
╚██╗ ██╔╝██║██╔══██╗   ██║   ██║   ██║██╔══██║██║     ██║╚██╔╝██║██╔══██║██║
 ╚████╔╝ ██║██║  ██║   ██║   ╚██████╔╝██║  ██║███████╗██║ ╚═╝ ██║██║  ██║╚██████╗
  ╚═══╝  ╚═╝╚═╝  ╚═╝   ╚═╝    ╚═════╝ ╚═╝  ╚═╝╚══════╝╚═╝     ╚═╝╚═╝  ╚═╝ ╚═════╝`
