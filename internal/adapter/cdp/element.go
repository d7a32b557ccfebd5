package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mafredri/cdp/protocol/runtime"

	"idlemsg/pkg/browser"
)

// element 页面元素句柄，持有远端对象ID
type element struct {
	sess     *Session
	objectID runtime.RemoteObjectID
}

// call 在元素上调用无参函数并按值返回结果
func (e *element) call(fn string) (json.RawMessage, error) {
	return e.callWith(fn)
}

// callWith 在元素上调用函数，参数为JSON编码值
func (e *element) callWith(fn string, args ...json.RawMessage) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(e.sess.ctx, 10*time.Second)
	defer cancel()

	callArgs := runtime.NewCallFunctionOnArgs(fn).
		SetObjectID(e.objectID).
		SetReturnByValue(true)
	if len(args) > 0 {
		list := make([]runtime.CallArgument, 0, len(args))
		for _, a := range args {
			list = append(list, runtime.CallArgument{Value: a})
		}
		callArgs = callArgs.SetArguments(list)
	}

	reply, err := e.sess.client.Runtime.CallFunctionOn(ctx, callArgs)
	if err != nil {
		return nil, fmt.Errorf("元素调用失败: %w", err)
	}
	if reply.ExceptionDetails != nil {
		return nil, fmt.Errorf("元素脚本异常: %s", reply.ExceptionDetails.Text)
	}
	return reply.Result.Value, nil
}

// Text 元素可见文本
func (e *element) Text() (string, error) {
	raw, err := e.call("function() { return this.innerText || this.textContent || ''; }")
	if err != nil {
		return "", err
	}
	return rawToString(raw), nil
}

// Attribute 读取元素属性，属性不存在时返回空串
func (e *element) Attribute(name string) (string, error) {
	arg, _ := json.Marshal(name)
	raw, err := e.callWith("function(name) { return this.getAttribute(name) || ''; }", arg)
	if err != nil {
		return "", err
	}
	return rawToString(raw), nil
}

// QuerySelectorAll 在元素内查询子元素
func (e *element) QuerySelectorAll(sel string) ([]browser.ElementHandle, error) {
	ctx, cancel := context.WithTimeout(e.sess.ctx, 10*time.Second)
	defer cancel()

	arg, _ := json.Marshal(sel)
	callArgs := runtime.NewCallFunctionOnArgs("function(sel) { return Array.from(this.querySelectorAll(sel)); }").
		SetObjectID(e.objectID).
		SetArguments([]runtime.CallArgument{{Value: arg}})
	reply, err := e.sess.client.Runtime.CallFunctionOn(ctx, callArgs)
	if err != nil {
		return nil, fmt.Errorf("查询子元素失败: %w", err)
	}
	if reply.ExceptionDetails != nil {
		return nil, fmt.Errorf("选择器异常: %s", reply.ExceptionDetails.Text)
	}
	return e.sess.arrayElements(ctx, reply.Result)
}
