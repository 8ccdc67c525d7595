// Package app wires the stepper, wheel, line sensor, and command-link
// packages into the scheduled task graph spec.md §2 and §5 describe:
// a priority-preemptive executor running the stepper pulse task at
// the top priority, a 25ms wheel controller tick, a 100µs line task,
// a command-dispatch task, and a UART TX task draining the command
// link; UART RX bytes are fed in through HandleReceivedByte.
//
// It is the concrete analogue of standalone.Manager:
// where that type built a kinematics/planner/gcode pipeline from a
// MachineConfig, Robot builds this robot's stepper/wheel/line-sensor
// pipeline from the same kind of config, repurposed to this domain.
package app

import (
	"math"
	"time"

	"linebot/hal"
	"linebot/internal/config"
	"linebot/internal/encoder"
	"linebot/internal/link"
	"linebot/internal/linesensor"
	"linebot/internal/motor"
	"linebot/internal/pid"
	"linebot/internal/sched"
	"linebot/internal/servo"
	"linebot/internal/stepper"
	"linebot/internal/wheel"
)

// Peripherals is the set of board-bringup capabilities a Robot is
// built from. Board bring-up itself (clock trees, pin muxing, the
// concrete register-level drivers behind these interfaces) is out of
// scope per spec.md §1; callers inject whatever concrete
// implementations their target provides.
type Peripherals struct {
	LeftMotorPWM hal.PWMSink
	LeftMotorDir hal.DigitalOut
	LeftEncoder  hal.QuadratureCounter

	RightMotorPWM hal.PWMSink
	RightMotorDir hal.DigitalOut
	RightEncoder  hal.QuadratureCounter

	LiftStep hal.DigitalOut
	LiftDir  hal.DigitalOut

	GripperServo hal.PWMSink

	LineSensorBus hal.I2CBus
}

// gripper servo duty at each of its two resting positions.
const (
	gripperOpenDuty  uint8 = 20
	gripperCloseDuty uint8 = 90
)

// Robot aggregates every constructed component plus the scheduler and
// command link that glue them into the application task graph.
type Robot struct {
	cfg *config.MachineConfig

	Scheduler *sched.Scheduler
	Link      *link.Link

	LeftWheel  *wheel.Controller
	RightWheel *wheel.Controller
	Lift       *stepper.Stepper
	LiftServo  *servo.Controller
	Gripper    hal.PWMSink
	LineSensor *linesensor.Array

	// OnOutboundFrame, if set, is called with every frame popped from
	// the link's outbound queue by the UART TX task. The actual byte
	// write goes through whatever transport the caller is running
	// over (a real UART on the robot, a serial port on the host);
	// wiring that transport is outside this package.
	OnOutboundFrame func(frame []byte)

	outboundLock *sched.Resource
	registryLock *sched.Resource
	driveLock    *sched.Resource

	lastControllerTick time.Time
}

// liftRearmer adapts Scheduler.SpawnAt into the stepper.Rearmer
// capability spec.md Design Notes §9 prefers over a raw closure.
type liftRearmer struct {
	s       *sched.Scheduler
	stepper *stepper.Stepper
}

func (r *liftRearmer) Rearm() {
	r.s.SpawnAt("lift-stepper", sched.PriorityStepper, time.Now(), r.tick)
}

func (r *liftRearmer) tick(now time.Time) (time.Duration, bool) {
	return r.stepper.Tick(now)
}

// New constructs a Robot from cfg and the injected peripheral
// capabilities. It does not start the scheduler; call ScheduleTaskGraph
// and then drive Scheduler.Dispatch.
func New(cfg *config.MachineConfig, p Peripherals) *Robot {
	r := &Robot{
		cfg:       cfg,
		Scheduler: sched.New(),
		Link:      link.New(),
	}

	r.outboundLock = sched.NewResource("outbound-queue", sched.PriorityUART)
	r.registryLock = sched.NewResource("interfacing-registry", sched.PriorityI2C)
	r.driveLock = sched.NewResource("wheel-stepper", sched.PriorityController)

	leftMotor := motor.New(p.LeftMotorPWM, p.LeftMotorDir, cfg.LeftWheel.MinDutyPercent, cfg.LeftWheel.Invert)
	leftEncoder := encoder.New(p.LeftEncoder, cfg.LeftWheel.EncoderCountsPerRev, 2*math.Pi*cfg.LeftWheel.WheelRadiusCm)
	leftPID := pid.New(cfg.LeftWheel.PID.Kp, cfg.LeftWheel.PID.Ki, cfg.LeftWheel.PID.Kd, 100, 100)
	r.LeftWheel = wheel.New(leftMotor, leftEncoder, leftPID, cfg.LeftWheel.MaxSpeedCmS)

	rightMotor := motor.New(p.RightMotorPWM, p.RightMotorDir, cfg.RightWheel.MinDutyPercent, cfg.RightWheel.Invert)
	rightEncoder := encoder.New(p.RightEncoder, cfg.RightWheel.EncoderCountsPerRev, 2*math.Pi*cfg.RightWheel.WheelRadiusCm)
	rightPID := pid.New(cfg.RightWheel.PID.Kp, cfg.RightWheel.PID.Ki, cfg.RightWheel.PID.Kd, 100, 100)
	r.RightWheel = wheel.New(rightMotor, rightEncoder, rightPID, cfg.RightWheel.MaxSpeedCmS)

	r.LiftServo = servo.New(r.LeftWheel, 10, 0.2)

	timings := stepper.DefaultTimings()
	if cfg.LiftStepper.PulseWidthUs > 0 {
		timings.PulseWidth = time.Duration(cfg.LiftStepper.PulseWidthUs) * time.Microsecond
	}
	rearm := &liftRearmer{s: r.Scheduler}
	r.Lift = stepper.New(p.LiftStep, p.LiftDir, timings, rearm)
	rearm.stepper = r.Lift

	r.Gripper = p.GripperServo

	if p.LineSensorBus != nil {
		r.LineSensor = linesensor.New(p.LineSensorBus, cfg.LineSensor.I2CAddress, linesensor.DefaultPinMap(), cfg.LineSensor.EdgeThreshold)
	}

	return r
}

// ScheduleTaskGraph registers the periodic tasks spec.md §2 and §5
// name: a 25ms controller tick for both wheels, a 100µs line sensor
// poll, a command-dispatch tick, and a UART TX task draining the
// link's outbound queue. UART RX is interrupt-driven in the real
// system (spec.md §5) and is fed via HandleReceivedByte instead of a
// scheduled task.
func (r *Robot) ScheduleTaskGraph(now time.Time) {
	r.lastControllerTick = now

	r.Scheduler.SpawnAt("controller-tick", sched.PriorityController, now.Add(25*time.Millisecond), r.controllerTick)
	if r.LineSensor != nil {
		r.Scheduler.SpawnAt("line-tick", sched.PriorityI2C, now.Add(100*time.Microsecond), r.lineTick)
	}
	r.Scheduler.SpawnAt("uart-tx", sched.PriorityUART, now.Add(time.Millisecond), r.uartTxTick)
	r.Scheduler.SpawnAt("dispatch", sched.PriorityI2C, now.Add(5*time.Millisecond), r.dispatchTick)
}

// HandleReceivedByte feeds one byte from the robot's UART RX
// interrupt into the command link (spec.md §5: "UART RX is
// interrupt-driven and feeds the framer").
func (r *Robot) HandleReceivedByte(b byte) (*link.Message, error) {
	unlock := r.Scheduler.Enter(r.registryLock)
	defer unlock()
	return r.Link.HandleByte(b)
}

func (r *Robot) controllerTick(now time.Time) (time.Duration, bool) {
	unlock := r.Scheduler.Enter(r.driveLock)
	defer unlock()

	dt := now.Sub(r.lastControllerTick)
	r.lastControllerTick = now
	if dt <= 0 {
		dt = 25 * time.Millisecond
	}

	r.LeftWheel.Update(dt)
	r.RightWheel.Update(dt)

	return 25 * time.Millisecond, true
}

func (r *Robot) lineTick(now time.Time) (time.Duration, bool) {
	if r.LineSensor == nil {
		return 0, false
	}
	r.LineSensor.Read()
	return 100 * time.Microsecond, true
}

func (r *Robot) uartTxTick(now time.Time) (time.Duration, bool) {
	unlock := r.Scheduler.Enter(r.outboundLock)
	defer unlock()

	if frame, ok := r.Link.PopOutbound(); ok && r.OnOutboundFrame != nil {
		r.OnOutboundFrame(frame)
	}
	return time.Millisecond, true
}

// dispatchTick pops commands the link has received and are waiting
// for execution, applies them to the wheels/lift/gripper, and reports
// Ack/Done back over the link, per spec.md §4.7's "Server side".
func (r *Robot) dispatchTick(now time.Time) (time.Duration, bool) {
	unlock := r.Scheduler.Enter(r.registryLock)
	defer unlock()

	id, ok := r.Link.PopWaitingExecute()
	if !ok {
		return 5 * time.Millisecond, true
	}

	h, ok := r.Link.Handle(id)
	if !ok {
		return 5 * time.Millisecond, true
	}

	r.Link.StartExecuting(id)
	r.applyCommand(h.Command)
	r.Link.FinishExecuting(id)

	return 5 * time.Millisecond, true
}

func (r *Robot) applyCommand(cmd link.Command) {
	switch cmd.Kind {
	case link.CmdStop:
		r.LeftWheel.SetSpeed(0)
		r.RightWheel.SetSpeed(0)
		r.Lift.Stop()

	case link.CmdSetSpeed:
		r.LeftWheel.SetSpeedCms(float64(cmd.Left))
		r.RightWheel.SetSpeedCms(float64(cmd.Right))

	case link.CmdOpenGripper:
		if r.Gripper != nil {
			r.Gripper.SetDuty(gripperOpenDuty)
		}

	case link.CmdCloseGripper:
		if r.Gripper != nil {
			r.Gripper.SetDuty(gripperCloseDuty)
		}

	case link.CmdLiftGripper:
		r.Lift.SetDirection(stepper.Clockwise)
		r.Lift.SetSpeed(r.cfg.LiftStepper.DefaultSpeedHz)

	case link.CmdLowerGripper:
		r.Lift.SetDirection(stepper.CounterClockwise)
		r.Lift.SetSpeed(r.cfg.LiftStepper.DefaultSpeedHz)
	}
}
