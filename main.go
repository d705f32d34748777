// Command newscrawler crawls the articles of a single news site.
package main

import "github.com/JakeFAU/newscrawler/cmd"

func main() {
	cmd.Execute()
}
