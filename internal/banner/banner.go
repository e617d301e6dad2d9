package banner

import (
	"fmt"
	"io"
)

const Version = "0.3.0"

func Print(w io.Writer) {
	banner := `
                            __   _ __
  ____ ___  _____  __  ___ / /__(_) /_
 / __ '/ / / / _ \/ / / / _ \ //_/ / __/
/ /_/ / /_/ /  __/ /_/ /  __/ ,< / / /_
\__, /\__,_/\___/\__,_/\___/_/|_/_/\__/
  /_/   v%s - one contract, two brokers
    `
	fmt.Fprintf(w, banner, Version)
	fmt.Fprintln(w, "\n------------------------------------------------")
}
