package main

import (
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/RoiRomem/KoiUtils/smartmotor"
)

// runShell drops into an interactive console for bench work: flipping motor
// states, jogging setpoints and seeding operators without a dashboard.
// Motor access always goes through the set so shell commands never race the
// control cycle.
func runShell(set *MotorSet) {
	motorNames := func([]string) []string {
		return set.Names()
	}

	shell := ishell.New()
	shell.Println("KoiUtils development shell")
	shell.ShowPrompt(true)

	shell.AddCmd(&ishell.Cmd{
		Name: "createsuperuser",
		Help: "createsuperuser <email> <password>",
		Func: func(c *ishell.Context) {
			// disable the '>>>' for cleaner same line input.
			c.ShowPrompt(false)
			defer c.ShowPrompt(true)

			var email string
			if len(c.Args) >= 1 {
				email = c.Args[0]
			} else {
				c.Print("Email: ")
				email = c.ReadLine()
			}

			var password string
			if len(c.Args) >= 2 {
				password = c.Args[1]
			} else {
				c.Print("Password: ")
				password = c.ReadPassword()
			}

			op := &Operator{
				Email: email,
				Name:  email,
				Admin: true,
			}
			op.SetPassword([]byte(password))
			if err := ENV.DB.Save(op); err != nil {
				c.Err(err)
				return
			}

			c.Println("Superuser created")
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name:      "state",
		Completer: motorNames,
		Help:      "state <motor> <comp|debug|tuning>",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Println("usage: state <motor> <comp|debug|tuning>")
				return
			}

			var state smartmotor.MotorState
			switch strings.ToLower(c.Args[1]) {
			case "comp":
				state = smartmotor.Comp
			case "debug":
				state = smartmotor.Debug
			case "tuning":
				state = smartmotor.Tuning
			default:
				c.Printf("unknown state %s\n", c.Args[1])
				return
			}

			err := set.Do(c.Args[0], func(m *smartmotor.SmartMotor) error {
				m.SetState(state)
				return nil
			})
			if err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name:      "move",
		Completer: motorNames,
		Help:      "move <motor> <position>",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Println("usage: move <motor> <position>")
				return
			}
			pos, err := strconv.ParseFloat(c.Args[1], 64)
			if err != nil {
				c.Err(err)
				return
			}

			c.Printf("Moving %s to %.3f\n", c.Args[0], pos)
			err = set.Do(c.Args[0], func(m *smartmotor.SmartMotor) error {
				return m.MoveToPosition(pos)
			})
			if err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name:      "sync",
		Completer: motorNames,
		Help:      "sync <motor>  - reseed the relative encoder from the absolute one",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Println("usage: sync <motor>")
				return
			}
			err := set.Do(c.Args[0], func(m *smartmotor.SmartMotor) error {
				return m.SyncToAbsolute()
			})
			if err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name:      "pos",
		Completer: motorNames,
		Help:      "pos <motor>",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Println("usage: pos <motor>")
				return
			}
			var pos float64
			err := set.Do(c.Args[0], func(m *smartmotor.SmartMotor) error {
				pos = m.Position()
				return nil
			})
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("%s position: %.3f\n", c.Args[0], pos)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name:      "gains",
		Completer: motorNames,
		Help:      "gains <motor> [p i d ff]  - show or override the tuning gains",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Println("usage: gains <motor> [p i d ff]")
				return
			}
			name := c.Args[0]
			if !set.Has(name) {
				c.Printf("no such motor %s\n", name)
				return
			}

			keys := []string{" kP", " kI", " kD", " kFF"}

			if len(c.Args) == 1 {
				for _, suffix := range keys {
					c.Printf("%s%s: %.6f\n", name, suffix, ENV.Table.ReadBack(name+suffix, 0))
				}
				return
			}

			if len(c.Args) < 5 {
				c.Println("usage: gains <motor> <p> <i> <d> <ff>")
				return
			}
			// overrides land on the dashboard table, so the next tuning
			// cycle picks them up exactly like an operator edit
			for i, suffix := range keys {
				value, err := strconv.ParseFloat(c.Args[i+1], 64)
				if err != nil {
					c.Err(err)
					return
				}
				if err := ENV.Table.SetOverride(name+suffix, value); err != nil {
					c.Err(err)
					return
				}
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "motors",
		Help: "list configured motors",
		Func: func(c *ishell.Context) {
			for _, name := range set.Names() {
				var state smartmotor.MotorState
				set.Do(name, func(m *smartmotor.SmartMotor) error {
					state = m.State()
					return nil
				})
				c.Printf("%s (state %d)\n", name, state)
			}
		},
	})

	shell.Run()
}
