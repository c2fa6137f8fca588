package main

var cli struct {
	Verbose bool   `help:"Prints debug output by default"`
	Config  string `help:"Config file; defaults to the first of /etc/roctuner/config.hcl, ~/.config/roctuner/config.hcl, ./config.hcl" type:"path"`
	Tui     bool   `help:"Show scan progress in a terminal UI"`
	Save    string `help:"Write the calibration outcome to this YAML file" type:"path"`

	Clock struct {
		Rocs int `help:"Number of ROCs to average the spread over (default clock.rocs)"`
	} `cmd:"" help:"Scan the clock delay family for the most even address levels"`
	Edge struct {
	} `cmd:"" help:"Find the tin/tout token delay edges"`
	Wbc struct {
	} `cmd:"" help:"Scan the write buffer count until the hit yield is accepted"`
	Latency struct {
	} `cmd:"" help:"Scan the trigger latency for the best hit yield"`
	Decode struct {
		Words []string `arg:"" help:"Raw 16 bit words in hex, e.g. 0x8900"`
	} `cmd:"" help:"Convert raw readout words to signed levels"`
	Names struct {
	} `cmd:"" help:"List the known delay, dac, trigger source and probe names"`
}
