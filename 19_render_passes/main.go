package main

import (
	"embed"
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/renderpass-examples/deferred"
	"github.com/vkngwrapper/renderpass-examples/gfx"
	"github.com/vkngwrapper/renderpass-examples/gfx/vulkan"
	"github.com/vkngwrapper/renderpass-examples/utils"
	"golang.org/x/sync/errgroup"
)

//go:generate glslc shaders/cube.vert -o shaders/cube_vert.spv
//go:generate glslc shaders/cube.frag -o shaders/cube_frag.spv
//go:generate glslc shaders/lighting.vert -o shaders/lighting_vert.spv
//go:generate glslc shaders/lighting.frag -o shaders/lighting_frag.spv

//go:embed shaders images
var fileSystem embed.FS

const windowTitle = "Render Passes"

type shaderFile struct {
	desc  *gfx.ShaderDesc
	name  string
	path  string
	stage gfx.ShaderStage
}

// loadAssets reads the SPIR-V programs and decodes the cube texture
// concurrently.
func loadAssets() (deferred.Assets, error) {
	var assets deferred.Assets
	programs := &assets.Programs

	shaders := []shaderFile{
		{&programs.CubeVS, "Cube VS", "shaders/cube_vert.spv", gfx.ShaderStageVertex},
		{&programs.CubePS, "Cube PS", "shaders/cube_frag.spv", gfx.ShaderStagePixel},
		{&programs.LightVS, "Light volume VS", "shaders/lighting_vert.spv", gfx.ShaderStageVertex},
		{&programs.LightPS, "Deferred lighting PS", "shaders/lighting_frag.spv", gfx.ShaderStagePixel},
	}

	var group errgroup.Group
	for _, shader := range shaders {
		group.Go(func() error {
			code, err := fileSystem.ReadFile(shader.path)
			if err != nil {
				return errors.Wrapf(err, "read %s (run go generate to compile the shaders)", shader.path)
			}
			*shader.desc = gfx.ShaderDesc{
				Name:  shader.name,
				Stage: shader.stage,
				Code:  code,
			}
			return nil
		})
	}

	group.Go(func() error {
		imageBytes, err := fileSystem.ReadFile("images/texture.png")
		if err != nil {
			return err
		}
		assets.Texture, err = utils.DecodePNG(imageBytes)
		return err
	})

	err := group.Wait()
	return assets, err
}

type RenderPassesApplication struct {
	opts utils.Options

	window    *sdl.Window
	device    *vulkan.Device
	swapChain *vulkan.SwapChain
	renderer  *deferred.Renderer

	startTime float64
	lastTime  float64
	rendering bool
}

func (app *RenderPassesApplication) Run() error {
	err := app.initWindow()
	if err != nil {
		return err
	}
	defer app.cleanup()

	err = app.initRenderer()
	if err != nil {
		return err
	}

	return app.mainLoop()
}

func (app *RenderPassesApplication) initWindow() error {
	window, err := utils.CreateWindow(windowTitle, app.opts.Width, app.opts.Height)
	if err != nil {
		return err
	}
	app.window = window
	return nil
}

func (app *RenderPassesApplication) initRenderer() error {
	assets, err := loadAssets()
	if err != nil {
		return errors.Wrap(err, "load assets")
	}

	app.device, err = vulkan.NewDevice(app.window, vulkan.Options{
		AppName:           windowTitle,
		Validation:        app.opts.Validation,
		PipelineCachePath: app.opts.PipelineCachePath,
	})
	if err != nil {
		return errors.Wrap(err, "create device")
	}

	width, height := utils.DrawableSize(app.window)
	app.swapChain, err = vulkan.NewSwapChain(app.device, width, height)
	if err != nil {
		return err
	}

	app.renderer, err = deferred.New(app.device, app.swapChain, assets, deferred.Config{
		LightCount: app.opts.Lights,
		Seed:       app.opts.Seed,
	})
	if err != nil {
		return errors.Wrap(err, "create renderer")
	}
	app.updateTitle()

	app.startTime = hrtime.Now().Seconds()
	app.lastTime = app.startTime
	app.rendering = true
	return nil
}

func (app *RenderPassesApplication) updateTitle() {
	app.window.SetTitle(fmt.Sprintf("%s - %d lights", windowTitle, app.renderer.LightCount()))
}

func (app *RenderPassesApplication) changeLightCount(delta int) error {
	// The light buffer of the frame in flight is about to be replaced.
	err := app.device.WaitIdle()
	if err != nil {
		return err
	}

	err = app.renderer.SetLightCount(app.renderer.LightCount() + delta)
	if err != nil {
		return err
	}
	app.updateTitle()
	return nil
}

func (app *RenderPassesApplication) handleKey(e *sdl.KeyboardEvent) (quit bool, err error) {
	if e.State != sdl.PRESSED {
		return false, nil
	}

	switch e.Keysym.Sym {
	case sdl.K_ESCAPE:
		return true, nil
	case sdl.K_PLUS, sdl.K_EQUALS, sdl.K_KP_PLUS:
		return false, app.changeLightCount(utils.LightStep)
	case sdl.K_MINUS, sdl.K_KP_MINUS:
		return false, app.changeLightCount(-utils.LightStep)
	}
	return false, nil
}

func (app *RenderPassesApplication) mainLoop() error {
appLoop:
	for true {
		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			switch e := event.(type) {
			case *sdl.QuitEvent:
				break appLoop
			case *sdl.KeyboardEvent:
				quit, err := app.handleKey(e)
				if err != nil {
					return err
				}
				if quit {
					break appLoop
				}
			case *sdl.WindowEvent:
				switch e.Event {
				case sdl.WINDOWEVENT_MINIMIZED:
					app.rendering = false
				case sdl.WINDOWEVENT_RESTORED:
					app.rendering = true
				case sdl.WINDOWEVENT_RESIZED:
					err := app.recreateSwapChain()
					if err != nil {
						return err
					}
				}
			}
		}
		if app.rendering {
			err := app.drawFrame()
			if err != nil {
				return err
			}
		}
	}

	return app.device.WaitIdle()
}

func (app *RenderPassesApplication) recreateSwapChain() error {
	width, height := utils.DrawableSize(app.window)
	if width == 0 || height == 0 {
		app.rendering = false
		return nil
	}

	err := app.swapChain.Resize(width, height)
	if err != nil {
		return err
	}
	desc := app.swapChain.Desc()
	app.renderer.Resize(desc.Width, desc.Height)
	app.rendering = true
	return nil
}

func (app *RenderPassesApplication) drawFrame() error {
	currentTime := hrtime.Now().Seconds()
	app.renderer.Update(currentTime-app.startTime, currentTime-app.lastTime)
	app.lastTime = currentTime

	err := app.swapChain.BeginFrame()
	if errors.Is(err, gfx.ErrOutOfDate) {
		return app.recreateSwapChain()
	} else if err != nil {
		return err
	}

	err = app.renderer.Render()
	if err != nil {
		return err
	}

	err = app.swapChain.Present()
	if errors.Is(err, gfx.ErrOutOfDate) {
		return app.recreateSwapChain()
	}
	return err
}

func (app *RenderPassesApplication) cleanup() {
	if app.device != nil {
		if err := app.device.WaitIdle(); err != nil {
			log.Printf("wait idle: %v", err)
		}
	}

	if app.renderer != nil {
		app.renderer.Destroy()
	}
	if app.swapChain != nil {
		app.swapChain.Destroy()
	}
	if app.device != nil {
		app.device.Close()
	}
	if app.window != nil {
		app.window.Destroy()
	}
	sdl.Quit()
}

func main() {
	runtime.LockOSThread()

	opts, err := utils.ProcessCommandLineArgs(os.Args[1:])
	if errors.Is(err, utils.ErrHelp) {
		utils.PrintUsage(os.Stdout)
		return
	} else if err != nil {
		fmt.Fprintln(os.Stderr, err)
		utils.PrintUsage(os.Stderr)
		os.Exit(2)
	}

	app := &RenderPassesApplication{opts: opts}
	err = app.Run()
	if err != nil {
		log.Fatalf("%+v\n", err)
	}
}
