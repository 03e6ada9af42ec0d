package main

import (
	"flag"
	"log"

	"github.com/mogaika/bf2_collision_browser/config"
	"github.com/mogaika/bf2_collision_browser/vfs"
	"github.com/mogaika/bf2_collision_browser/web"
)

func main() {
	var addr, dir, configPath, webPath string
	flag.StringVar(&addr, "i", ":8000", "Address of server")
	flag.StringVar(&dir, "dir", "", "Path to folder with .collisionmesh and .occ files")
	flag.StringVar(&configPath, "config", "", "Path to yaml config")
	flag.StringVar(&webPath, "web", "", "Path to static web files")
	flag.Parse()

	if dir == "" {
		flag.PrintDefaults()
		return
	}

	if configPath != "" {
		c, err := config.LoadFile(configPath)
		if err != nil {
			log.Fatal(err)
		}
		config.Set(c)
	}

	if err := web.StartServer(addr, vfs.NewDirectoryDriver(dir), webPath); err != nil {
		log.Fatal(err)
	}
}
