// Command netshell connects to a list of devices read from a CSV file
// (host,port,username,password,platform) and runs a fixed set of show
// commands against each, printing JSON results. It is a thin driver-loop
// example, not a library entry point.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/morganhein/netshell/driver"
	"github.com/morganhein/netshell/platform"
	"github.com/morganhein/netshell/platform/vendors/arista"
	"github.com/morganhein/netshell/platform/vendors/arrcus"
	"github.com/morganhein/netshell/platform/vendors/juniper"
	"github.com/morganhein/netshell/platform/vendors/linux"
	"github.com/morganhein/netshell/platform/vendors/nokia"
)

func platformByID(id string) (*platform.Definition, error) {
	switch id {
	case linux.Name:
		return linux.Platform(), nil
	case juniper.Name:
		return juniper.Platform(), nil
	case arista.Name:
		return arista.Platform(), nil
	case nokia.Name:
		return nokia.Platform(), nil
	case arrcus.Name:
		return arrcus.Platform(), nil
	default:
		return nil, fmt.Errorf("unknown platform id %q", id)
	}
}

func main() {
	cwd, _ := os.Getwd()
	fmt.Printf("Current %s\n", cwd)

	csvfile, err := os.Open("devices.csv")
	if err != nil {
		log.Panicf("unable to open the devices.csv file: %s", err.Error())
	}
	defer csvfile.Close()

	reader := csv.NewReader(csvfile)
	rows, err := reader.ReadAll()
	if err != nil {
		log.Fatalf("cannot load devices from csv file: %s", err.Error())
	}

	for _, row := range rows {
		host := row[0]
		port, err := strconv.Atoi(row[1])
		if err != nil {
			fmt.Printf("error converting port to an integer: %s\n", err)
			continue
		}
		username := row[2]
		password := row[3]
		platformID := row[4]

		def, err := platformByID(platformID)
		if err != nil {
			fmt.Printf("cannot resolve platform for %s: %s\n", host, err)
			continue
		}

		d, err := driver.NewBuilder(host).
			Port(port).
			Username(username).
			Password(password).
			Platform(def).
			Timeout(30 * time.Second).
			Build()
		if err != nil {
			fmt.Printf("cannot build driver for %s: %s\n", host, err)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := d.OpenDriver(ctx); err != nil {
			fmt.Printf("cannot connect to %s: %s\n", host, err)
			cancel()
			continue
		}
		cancel()

		fmt.Printf("successfully connected to %s\n", host)

		for _, cmd := range []string{"show version", "show running-config"} {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			resp, err := d.SendCommand(ctx, cmd)
			cancel()

			fmt.Println("\nresult:")
			if err != nil {
				fmt.Printf("%s\n", err.Error())
				continue
			}
			b, _ := json.MarshalIndent(resp, "", "  ")
			fmt.Println(string(b))
		}

		fmt.Println("closing.")
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		_ = d.Close(ctx)
		cancel()
	}
}
