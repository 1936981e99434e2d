package main

import "github.com/aqasim81/sqlmigrate/internal/cli"

func main() {
	cli.Execute()
}
